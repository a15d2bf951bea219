// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline enforces local mode: when privacy.local_mode is on, every
// backend must be on this machine and cloud providers are never contacted.
//
// # Usage
//
//	guard := offline.New(cfg.Privacy.LocalMode)
//	if err := guard.ValidateURL(cfg.Backend.URL); err != nil {
//	    return err
//	}
//	if guard.CheckCloudAllowed() == nil {
//	    // build the cloud responder
//	}
package offline
