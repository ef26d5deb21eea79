package status

import (
	"fmt"

	"github.com/cuemby/agent-snapper/pkg/types"
)

// CannotStart is the leader message when the daemon is not running
const CannotStart = "cannot start snap"

// Tags lists every status tag, used to flip the status gauge
var Tags = []string{
	string(types.StatusWaiting),
	string(types.StatusActive),
	string(types.StatusBlocked),
	string(types.StatusMaintenance),
}

// Project maps service state to the unit status. The leader is the source
// of truth and reports blocked when its daemon is down; followers always
// report an active standby regardless of the service.
func Project(name string, leader, serviceActive bool) types.Status {
	if !leader {
		return types.Status{
			Tag:     types.StatusActive,
			Message: fmt.Sprintf("%s status: standby", name),
		}
	}
	if serviceActive {
		return types.Status{Tag: types.StatusActive}
	}
	return types.Status{Tag: types.StatusBlocked, Message: CannotStart}
}
