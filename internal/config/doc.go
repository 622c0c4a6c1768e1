// Package config holds the options of a sitesift run.
//
// A Config starts from NewConfig defaults. The CLI then applies the
// .sitesift YAML file (LoadConfigFile), secrets from the environment or a
// .env file (LoadEnv) and finally command-line flags, and calls the Validate
// method that matches the command.
package config
