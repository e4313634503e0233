/*
Package log provides structured logging for the CWL-OSCAR execution backend
using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

The backend's logging system provides structured JSON logging with minimal
overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatcher")               │          │
	│  │  - WithClusterName("cluster-oscar.example")  │          │
	│  │  - WithServiceName("cwloscar-a1b2c3d4")      │          │
	│  │  - WithJobID("step-name_1700000000")         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "dispatcher",               │          │
	│  │    "time": "2026-07-30T10:30:00Z",         │          │
	│  │    "message": "job dispatched"              │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF job dispatched component=dispatcher │      │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all backend packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithClusterName: Add selected-cluster context
  - WithServiceName: Add derived-service-identity context
  - WithJobID: Add job ID context

# Usage

Initializing the Logger:

	import "github.com/grycap/cwl-oscar-go/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("registry initialized")
	log.Debug("checking cluster reachability")
	log.Warn("service create returned a transient status")
	log.Error("dispatch failed: exit-code artifact never appeared")
	log.Fatal("no clusters configured") // Exits process

Component Loggers:

	dispatchLog := log.WithComponent("dispatcher")
	dispatchLog.Info().Msg("script uploaded")
	dispatchLog.Debug().Str("job_id", jobID).Msg("polling for exit-code artifact")

	stepLog := log.WithJobID(jobID).
		With().Str("step", req.Name).Logger()
	stepLog.Info().Msg("step completed")

# Integration Points

This package integrates with:

  - pkg/registry: Logs cluster registration and selection
  - pkg/servicemgr: Logs service identity derivation and create/reuse decisions
  - pkg/dispatcher: Logs script synthesis, upload, poll and download
  - pkg/orchestrator: Logs per-step start/completion
  - cmd/cwl-oscar-runner: Initializes the global logger from CLI flags

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation

# Security

Log Content:
  - Never log secrets (cluster tokens, MinIO keys) or sensitive data
  - Use typed fields for any operator-supplied values that must be logged

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
