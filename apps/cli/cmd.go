package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp          = errors.New("help provided")
	errLoginRequired = errors.New("login required")
)

type commandLine struct {
	out         io.Writer
	session     *session.Container
	predictions *prediction.Container
	translator  ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME            - log in (password prompted)")
	fmt.Fprintln(cli.out, "  logout                              - clear the local session")
	fmt.Fprintln(cli.out, "  register -username U -email E       - create an account (password prompted)")
	fmt.Fprintln(cli.out, "  profile                             - show the account profile")
	fmt.Fprintln(cli.out, "  profile-update -username U -email E - update the account profile")
	fmt.Fprintln(cli.out, "  passwd                              - change the password (prompted)")
	fmt.Fprintln(cli.out, "  email -email E                      - change the account email (password prompted)")
	fmt.Fprintln(cli.out, "  delete-account -yes                 - delete the account and all its data")
	fmt.Fprintln(cli.out, "  predict [flags]                     - run a performance prediction")
	fmt.Fprintln(cli.out, "  history                             - list past predictions")
	fmt.Fprintln(cli.out, "  stats                               - show aggregate prediction stats")
	fmt.Fprintln(cli.out, "  dashboard                           - stats + recent history summary")
}

// requireAuth is the route guard: guarded commands are refused outright
// when the session is unauthenticated. No live token check happens
// here; a stale token only surfaces when a fetch fails.
func (cli *commandLine) requireAuth() error {
	if !cli.session.State().IsAuthenticated {
		fmt.Fprintln(cli.out, "You are not logged in. Run `alama login -username USERNAME` first.")
		return errLoginRequired
	}
	return nil
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		uname := fs.String("username", "", "The username or email. The password will be prompted next.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *uname == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		return cli.login(*uname, pwd)

	case "logout":
		return cli.logout()

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		uname := fs.String("username", "", "The username to register.")
		email := fs.String("email", "", "The account email.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *uname == "" || *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.register(*uname, *email, pwd, confirm)

	case "profile":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		return cli.profile()

	case "profile-update":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		fs := flag.NewFlagSet("profile-update", flag.ExitOnError)
		uname := fs.String("username", "", "The new username.")
		email := fs.String("email", "", "The new email.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		return cli.updateProfile(*uname, *email)

	case "passwd":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		current, err := cli.promptPassword("Current password:")
		if err != nil {
			return err
		}
		newPwd, err := cli.promptPassword("New password:")
		if err != nil {
			return err
		}
		confirm, err := cli.promptPassword("Confirm new password:")
		if err != nil {
			return err
		}
		return cli.changePassword(current, newPwd, confirm)

	case "email":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		fs := flag.NewFlagSet("email", flag.ExitOnError)
		email := fs.String("email", "", "The new email. The password will be prompted next.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		return cli.changeEmail(*email, pwd)

	case "delete-account":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		fs := flag.NewFlagSet("delete-account", flag.ExitOnError)
		yes := fs.Bool("yes", false, "Confirm deletion; the account and all its predictions are removed.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if !*yes {
			fmt.Fprintln(cli.out, "Deletion is permanent; re-run with -yes to confirm.")
			return errHelp
		}
		return cli.deleteAccount()

	case "predict":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		fs := flag.NewFlagSet("predict", flag.ExitOnError)
		in := prediction.Input{}
		fs.StringVar(&in.Gender, "gender", "female", "One of: "+strings.Join(prediction.GenderOptions, ", "))
		fs.StringVar(&in.RaceEthnicity, "race", "group A", "One of: "+strings.Join(prediction.RaceEthnicityOptions, ", "))
		fs.StringVar(&in.ParentalEducation, "parental", "bachelor's degree", "One of: "+strings.Join(prediction.ParentalEducationOptions, ", "))
		fs.StringVar(&in.Lunch, "lunch", "standard", "One of: "+strings.Join(prediction.LunchOptions, ", "))
		fs.StringVar(&in.TestPreparation, "prep", "none", "One of: "+strings.Join(prediction.TestPreparationOptions, ", "))
		fs.IntVar(&in.MathScore, "math", 70, "Math score (0-100).")
		fs.IntVar(&in.ReadingScore, "reading", 70, "Reading score (0-100).")
		fs.IntVar(&in.WritingScore, "writing", 70, "Writing score (0-100).")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		return cli.predict(in)

	case "history":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		return cli.history()

	case "stats":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		return cli.stats()

	case "dashboard":
		if err := cli.requireAuth(); err != nil {
			return err
		}
		return cli.dashboard()

	default:
		cli.printUsage()
		return errHelp
	}
}

// formatError renders an error as the single message (or field list)
// shown to the user.
func formatError(err error, translator ut.Translator) string {
	switch cause := pkgerrors.Cause(err).(type) {
	case validator.ValidationErrors:
		parts := make([]string, 0, len(cause))
		for _, vErr := range cause {
			parts = append(parts, fmt.Sprintf("%s: %s", vErr.Field(), vErr.Translate(translator)))
		}
		return strings.Join(parts, "; ")
	case *core.ValidationError:
		if cause.Fields != nil {
			parts := make([]string, 0, len(cause.Fields))
			for _, fErr := range cause.Fields {
				parts = append(parts, fmt.Sprintf("%s: %s", fErr.Field, fErr.Error))
			}
			return strings.Join(parts, "; ")
		}
		return cause.Error()
	case *core.APIError:
		return cause.Message
	default:
		return err.Error()
	}
}
