// Package services implements the driving ports: checklist evaluation,
// the knowledge index lifecycle, per-document retrieval and oracle calls,
// annotation, and the review batch that ties them together.
//
// Services depend only on domain and the port interfaces. Every adapter
// is injected through a Config struct.
package services
