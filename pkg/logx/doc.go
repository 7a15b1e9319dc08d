// Package logx wraps zerolog behind a small Logger value that stays live
// across runtime config changes (level, sinks) applied via Service.Apply.
package logx
