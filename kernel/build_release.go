// SPDX-License-Identifier: Unlicense OR MIT

//go:build release

package kernel

const debugBuild = false
