// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides animated image decoding and display planning.
//
// An [Image] holds a decoded GIF or APNG container together with a [Plan]
// describing which source frames to show, and at what stride of a host's
// maximum display rate, so that playback approximates the original frame
// timing within a quality budget.
package animation
