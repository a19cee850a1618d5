// Package cli implements the storytotest command tree: the interactive
// generate flow, the index/detect helpers, publish and the webhook server,
// plus config, init, version and completion.
//
// Commands register themselves on rootCmd in init. Execute runs the tree
// under a context cancelled by SIGINT or SIGTERM.
package cli
