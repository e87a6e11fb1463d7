// Package proxy implements the passage forward-proxy core: the request
// dispatcher, Basic proxy authentication enforcement, hop-by-hop header
// sanitizing, plain-HTTP forwarding, and CONNECT tunnel splicing, plus
// shared connection plumbing such as keepalive listeners and bidirectional
// copy.
package proxy
