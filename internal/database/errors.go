// MediaViewer - Multi-Client Media Playback Coordinator
// Copyright 2026 Gabriel (gabriel20xx)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gabriel20xx/MediaViewer

package database

import "errors"

// ErrNotFound is returned when a catalog lookup matches no row.
var ErrNotFound = errors.New("media item not found")
