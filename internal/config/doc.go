/*
Package config loads the daemon's on-disk configuration. Cobra flags (see
cmd/pkbrokerd) set the same fields and take precedence over the file, the
same layering the teacher applies between its persistent flags and
runtime defaults; here the file format is YAML via gopkg.in/yaml.v3 rather
than the teacher's flags-only approach, since a package broker daemon
conventionally ships a config file (pk-backend libs + helper locations)
separate from command-invocation flags.
*/
package config
