package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"resty.dev/v3"

	"github.com/at-ishikawa/surveygen/internal/survey"
)

type generateOptions struct {
	serverURL string
	token     string
	raw       bool
}

func newGenerateCommand() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <prompt>...",
		Short: "Request a survey from a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.serverURL == "" {
				opts.serverURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			}
			if opts.token == "" {
				opts.token = cfg.Auth.SecretToken
			}

			client := resty.New().SetBaseURL(opts.serverURL)
			defer func() { _ = client.Close() }()

			result, err := requestSurvey(client, opts.token, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(result.document.Raw()))
				return err
			}
			return printSurvey(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "server base URL (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token (default SECRET_TOKEN)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the survey JSON as returned by the server")
	return cmd
}

type surveyResult struct {
	document survey.Document
	cached   bool
}

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Raw     string `json:"raw"`
}

func requestSurvey(client *resty.Client, token, prompt string) (surveyResult, error) {
	response, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetAuthToken(token).
		SetBody(map[string]string{"prompt": prompt}).
		Post("/api/surveys/generate")
	if err != nil {
		return surveyResult{}, fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		var body apiError
		if err := json.Unmarshal([]byte(response.String()), &body); err != nil || body.Error == "" {
			return surveyResult{}, fmt.Errorf("server returned %d: %s", response.StatusCode(), response.String())
		}
		message := fmt.Sprintf("server returned %d %s", response.StatusCode(), body.Error)
		if body.Details != "" {
			message += ": " + body.Details
		}
		if retryAfter := response.Header().Get("Retry-After"); retryAfter != "" {
			message += fmt.Sprintf(" (retry after %ss)", retryAfter)
		}
		return surveyResult{}, fmt.Errorf("%s", message)
	}

	doc, err := survey.ParseDocument([]byte(response.String()))
	if err != nil {
		return surveyResult{}, fmt.Errorf("parse survey: %w", err)
	}
	return surveyResult{document: doc, cached: response.Header().Get("X-Cached") == "true"}, nil
}

func printSurvey(w io.Writer, result surveyResult) error {
	bold := color.New(color.Bold)
	source := color.New(color.FgGreen).Sprint("generated")
	if result.cached {
		source = color.New(color.FgYellow).Sprint("cached")
	}

	if _, err := fmt.Fprintf(w, "%s [%s]\n", bold.Sprint(result.document.Title), source); err != nil {
		return err
	}
	for i, q := range result.document.Questions {
		if _, err := fmt.Fprintf(w, "%2d. %s (%s)\n", i+1, q.Text, q.Type); err != nil {
			return err
		}
		switch q.Type {
		case survey.QuestionMultipleChoice:
			for _, option := range q.Options {
				if _, err := fmt.Fprintf(w, "      - %s\n", option); err != nil {
					return err
				}
			}
		case survey.QuestionRating:
			if q.Scale <= 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "      scale 1-%d\n", q.Scale); err != nil {
				return err
			}
		}
	}
	return nil
}
