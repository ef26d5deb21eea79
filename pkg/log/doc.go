/*
Package log provides structured logging for agent-snapper using zerolog.

A single global Logger is configured once by Init from the process settings.
Packages derive child loggers that carry the fields operators filter on:

	log.WithComponent("dispatch")            // component=dispatch
	log.WithSnap("vantage-agent")            // snap=vantage-agent
	log.WithEvent(snap, eventID, "install")  // snap, event_id, event

# Output

Logs go to stderr so that stdout stays reserved for command output (the
dispatch, status and history commands print there). JSONOutput selects
zerolog's JSON encoder; otherwise a ConsoleWriter with RFC 3339 timestamps is
used:

	2026-10-16T10:30:00Z INF Event outcome component=status event=install snap=jobbergate-agent status=waiting

# Levels

debug shows every snap invocation with its quoted argv, exit code and
duration. info is the default and records statuses and outcomes. Secrets
set through "snap set" are never logged: only keys appear in the
configuration log lines.

# Usage

	log.Init(log.Config{Level: log.ParseLevel(settings.LogLevel), JSONOutput: settings.LogJSON})

	logger := log.WithSnap(spec.Name)
	logger.Info().Strs("missing", missing).Msg("Required config missing")
*/
package log
