// Package core contains the contracts shared by every bridge subsystem: the
// error taxonomy, configuration model, and logging helpers. Subsystems depend
// on core; core must not depend on any subsystem or platform backend.
package core
