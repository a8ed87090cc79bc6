// Package screener defines the core types, capability interfaces, and the
// crawl orchestrator for the equity screener crawler.
package screener
