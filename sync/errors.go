// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

package sync

import "errors"

// ErrGenesisMismatch marks a peer status update whose genesis hash
// differs from the first-seen genesis hash for that peer. It is the only
// sync error callers match on with errors.Is: every other failure mode
// in this package (queue-full, stale block, verify mismatch, consensus
// rejection) is handled inline by logging and rewinding rather than by
// propagating a typed error, since nothing outside the pipeline ever
// needs to distinguish them.
var ErrGenesisMismatch = errors.New("sync: peer status genesis hash mismatch")
