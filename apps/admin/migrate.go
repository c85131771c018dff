package main

// migrate forwards a goose command to the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
