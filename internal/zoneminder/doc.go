// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package zoneminder talks to the ZoneMinder REST API.
//
// Every call goes through a single-flight FIFO queue: units run one at a time
// in enqueue order, each preceded by a token freshness check against the
// session. Requests that receive 504 Gateway Timeout are re-issued until the
// server answers with anything else.
package zoneminder
