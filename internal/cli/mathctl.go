package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mathengine/internal/api"
	"mathengine/internal/models"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

const pollInterval = 500 * time.Millisecond

type mathctlOptions struct {
	server   string
	token    string
	login    string
	password string
}

func (o *mathctlOptions) client(ctx context.Context) (*apiClient, error) {
	c := newAPIClient(o.server, o.token)
	if c.token == "" && o.login != "" {
		if err := c.login(ctx, o.login, o.password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}
	return c, nil
}

func NewMathctlCmd() *cobra.Command {
	opts := &mathctlOptions{}

	server := os.Getenv("MATHCTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	cmd := &cobra.Command{
		Use:          "mathctl",
		Short:        "Submit questions to the engine and watch the answers",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "orchestrator HTTP address")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MATHCTL_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.login, "login", os.Getenv("MATHCTL_LOGIN"), "login used to obtain a token")
	cmd.PersistentFlags().StringVar(&opts.password, "password", os.Getenv("MATHCTL_PASSWORD"), "password used to obtain a token")

	cmd.AddCommand(newSubmitCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newCancelCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	return cmd
}

func newSubmitCmd(opts *mathctlOptions) *cobra.Command {
	var (
		delay int64
		wait  bool
	)

	cmd := &cobra.Command{
		Use:     "submit <expression>",
		Short:   `Submit a question, e.g. mathctl submit "1 + 1" --delay 5`,
		Args:    cobra.MinimumNArgs(1),
		Example: `  mathctl submit "6 / 3" --delay 10 --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}

			id, err := c.submit(ctx, api.QuestionRequest{
				Expression:   strings.Join(args, " "),
				DelaySeconds: delay,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", bold.Sprint("submitted"), id)

			if !wait {
				return nil
			}
			answer, err := waitAnswer(ctx, c, id, delay, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			green.Fprintln(out, answer.Result)
			return nil
		},
	}
	cmd.Flags().Int64Var(&delay, "delay", 0, "answer delay in seconds")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the answer with a progress bar")
	return cmd
}

// waitAnswer опрашивает список ответов, пока не появится ответ с id
func waitAnswer(ctx context.Context, c *apiClient, id string, delay int64, progress io.Writer) (models.Answer, error) {
	total := delay
	if total < 1 {
		total = 1
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("waiting "+id[:min(8, len(id))]),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	start := time.Now()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		answers, err := c.answers(ctx)
		if err != nil {
			return models.Answer{}, err
		}
		for _, a := range answers.Answers {
			if a.ID == id {
				_ = bar.Set64(total)
				return a, nil
			}
		}

		elapsed := int64(time.Since(start) / time.Second)
		_ = bar.Set64(min(elapsed, total))

		select {
		case <-ctx.Done():
			return models.Answer{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newListCmd(opts *mathctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show pending operations and completed answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			ops, err := c.operations(ctx)
			if err != nil {
				return err
			}
			answers, err := c.answers(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold.Fprintln(out, "Pending operations")
			table := tablewriter.NewWriter(out)
			table.Header("ID", "Question", "Remaining")
			for _, op := range ops.Operations {
				_ = table.Append(op.ID, op.Question, yellow.Sprint(op.Remaining))
			}
			_ = table.Render()

			bold.Fprintln(out, "Answers")
			table = tablewriter.NewWriter(out)
			table.Header("ID", "Result", "Completed")
			for _, a := range answers.Answers {
				_ = table.Append(a.ID, green.Sprint(a.Result), a.CompletedAt.Format(time.DateTime))
			}
			return table.Render()
		},
	}
}

func newCancelCmd(opts *mathctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel all pending operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			if err := c.cancelAll(ctx); err != nil {
				return err
			}
			red.Fprintln(cmd.OutOrStdout(), "all pending operations cancelled")
			return nil
		},
	}
}

func newStatusCmd(opts *mathctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending and completed counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			s, err := c.summary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending: %s  completed: %s\n",
				yellow.Sprint(s.Pending), green.Sprint(s.Completed))
			return nil
		},
	}
}
