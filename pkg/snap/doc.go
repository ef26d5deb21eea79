/*
Package snap drives the snap command line client.

Runner executes one process per call and captures its output in a Command.
CommandRunner is the real implementation, built on go-cmd; tests use the
in-memory fake in package snaptest. Any non-zero exit is returned as a
*CommandError carrying the argv, exit code and stderr.

Client builds the argv for each operation:

	snap list <name>
	snap install --channel <c> --<confinement> <name>
	snap refresh --channel <c> --<confinement> <name>
	snap set <name> <key>=<value>
	snap unset <name> <key>...
	snap get -d <name>
	snap services <name>.daemon
	snap run <name>.<app>
	snap remove <name>

The probes (IsInstalled, IsServiceActive, CurrentConfig) never return an
error. A failed or unparseable probe reads as "not installed", "not active"
or an empty configuration.
*/
package snap
