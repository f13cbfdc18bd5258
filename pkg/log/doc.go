/*
Package log wraps zerolog to provide structured logging with
component-scoped child loggers.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("node started")

	committerLog := log.WithComponent("committer")
	committerLog.Info().Int("wave", wave).Msg("leader decided")

	log.WithAuthority(3).Info().Msg("authority-scoped log line")
	log.WithRound(42).Debug().Msg("round-scoped log line")
	log.WithCommitIndex(17).Info().Msg("commit appended")

The package-level Info/Debug/Warn/Error/Fatal helpers log against a
single global logger initialized by Init; WithComponent and friends
return a zerolog.Logger carrying one extra field, for call sites that
want every subsequent line tagged without repeating the field by hand.
*/
package log
