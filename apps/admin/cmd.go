package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB // nil with the memory engine
	orgSvc *org.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                              - run a goose command (up, down, status, ...)")
	fmt.Println("  addorg -name NAME [-plan FREE|PRO]                  - create an organization")
	fmt.Println("  adduser -org ORG_ID -name NAME -email EMAIL -role ROLE - create a user, the password is prompted")
	fmt.Println("  resetpassword -email EMAIL                          - reset a user's password")
}

// promptPassword reads a password without echoing it. An empty password prints the usage.
func promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addOrgCmd := flag.NewFlagSet("addorg", flag.ContinueOnError)
	addOrgName := addOrgCmd.String("name", "", "The organization's name.")
	addOrgPlan := addOrgCmd.String("plan", string(org.PlanFree), "The subscription plan: FREE or PRO.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserOrg := addUserCmd.String("org", "", "The organization id.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", string(org.RoleOrgAdmin), "PLATFORM_ADMIN, ORG_ADMIN, COORDINATOR or TEACHER.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if cli.db == nil {
			return errors.New("migrations need the postgres engine")
		}
		return cli.migrate(args[2:])

	case "addorg":
		if err := addOrgCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addOrgName == "" {
			addOrgCmd.Usage()
			return errHelp
		}
		return cli.addOrg(*addOrgName, *addOrgPlan)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserOrg == "" || *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserOrg, *addUserName, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}
