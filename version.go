// Package hsrdriver supervises the March7thAssistant automation process and
// exposes run, wait and stop controls to MCP and HTTP clients.
package hsrdriver

// Version is the driver version reported to MCP clients.
const Version = "0.1.0"
