// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sanitize contains the validation and cleaning functions that are
// applied to every client supplied field before it is trusted.
//
// Functions that clean always return a usable value. Functions that validate
// return a FieldError when the value cannot be made valid. None of the
// functions keep state and all of them are safe for concurrent use.
package sanitize
