package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	apiclient "github.com/trezcool/alama/api"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/session"
	logsvc "github.com/trezcool/alama/services/logger"
	tokenstore "github.com/trezcool/alama/storage/token"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, "", log.LstdFlags)
	var logger core.Logger = logsvc.NewConsoleLogger(std)
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up validation
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up the API client; the wrapper reads the persisted token on
	// every outgoing call.
	store := tokenstore.NewFileStore(conf.TokenPath)
	client := apiclient.NewClient(apiclient.Options{
		BaseURL: conf.API.BaseURL,
		Timeout: conf.API.Timeout,
		Tokens: apiclient.TokenSourceFunc(func() string {
			token, _ := store.Load()
			return token
		}),
	})

	sess, err := session.NewContainer(client, store, validate)
	if err != nil {
		logger.Fatal("initializing session", err)
	}
	preds := prediction.NewContainer(client, validate)

	cli := commandLine{
		out:         os.Stdout,
		session:     sess,
		predictions: preds,
		translator:  translator,
	}
	if err := cli.run(os.Args); err != nil {
		switch cause := pkgerrors.Cause(err).(type) {
		case *core.APIError, *core.ValidationError, validator.ValidationErrors:
			fmt.Printf("error: %s\n", formatError(err, translator))
		default:
			if cause != errHelp && cause != errLoginRequired {
				logger.Error("command failed", err)
			}
		}
		os.Exit(1)
	}
}
