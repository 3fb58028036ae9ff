// Package ptrx holds pointer helpers for optional fields.
package ptrx

import "time"

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }
