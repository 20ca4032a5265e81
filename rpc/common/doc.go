// Package common provides core data structures and utilities shared across
// the ledger RPC system. It defines fundamental types, configuration structures,
// and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the dragonboat logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response messages.
//     Ledger errors travel as a return code plus message and are rebuilt with ToError.
//
//   - MessageType: Enumeration defining all supported operation types in the
//     system, categorized into handle management, ledger operations, and
//     control messages.
//
//   - ServerConfig: Configuration for the server, including static ledger handles,
//     lock striping, network settings and logging.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into dragonboat's
//     logger factory while providing consistent formatting across the application.
package common
