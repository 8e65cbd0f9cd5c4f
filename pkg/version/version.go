// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package version

// Version is set during compile time via -ldflags in the `go build` process. It stores the
// version of the store provisioning platform.
var Version = "binary was not built properly"
