// Package config loads endog process configuration.
//
// Sources are layered with koanf, later sources overriding earlier ones:
//
//  1. Built-in defaults
//  2. YAML configuration file (--config)
//  3. Environment variables (ENDOG_SECTION_KEY)
//  4. Command-line flag overrides
//
// Keys:
//
//	journal.path         journal file or database path
//	journal.backend      file | sqlite
//	journal.encoding     utf8 | latin1 | windows-1252 | ascii (file backend)
//	journal.chunk_bytes  replay read size (file backend)
//	engine.tolerance     duration, e.g. "5s"
//	log.level            debug | info | warn | error
//	metrics.listen       address for /metrics; empty disables
package config
