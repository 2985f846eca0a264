// Package transcription turns long audio into text through pluggable
// provider backends.
//
// The orchestrator drives one job at a time: the source is segmented at
// silence boundaries, chunks are dispatched with bounded concurrency
// through a resilience policy (rate limit, retry, ordered fallback),
// and the terminal segments are reassembled in chunk-index order into a
// transcript plus a manifest describing every chunk's outcome.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar, inline bytes
//   - transcription/batch: staged-URL submit and poll API
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.Register(whisper.New(whisperCfg))
//	orch := transcription.NewOrchestrator(reg, cfg)
//	result, err := orch.Run(ctx, job, decoder, nil)
package transcription
