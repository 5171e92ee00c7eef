package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"taskboard-api/pkg/client"
	"taskboard-api/pkg/metric"
	"taskboard-api/pkg/task"
	"taskboard-api/utils"

	"github.com/spf13/cobra"
)

const (
	envTaskboardURL = "TASKBOARD_URL"
	defaultURL      = "http://localhost:3001/trpc"
)

type cli struct {
	baseURL string
	timeout time.Duration
	out     io.Writer
	client  *client.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "taskctl - manage tasks on a taskboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.client = client.New(c.baseURL)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.baseURL, "url", utils.GetEnvOrDefault(envTaskboardURL, defaultURL), "procedure endpoint ($"+envTaskboardURL+")")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "request timeout")

	var filter client.Filter
	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = client.StatusFilter(status)
			return c.runList(filter)
		},
	}
	listCmd.Flags().StringVar(&status, "status", string(client.StatusAll), "all, active or completed")
	listCmd.Flags().StringVar(&filter.Priority, "priority", client.PriorityAll, "all, low, medium or high")

	showCmd := &cobra.Command{
		Use:   "show <id>...",
		Short: "Show one or more tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShow(args)
		},
	}

	var description, priority, due string
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := task.CreateTaskInput{Title: strings.Join(args, " ")}
			if cmd.Flags().Changed("description") {
				input.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				p := task.Priority(priority)
				input.Priority = &p
			}
			if cmd.Flags().Changed("due") {
				input.DueDate = &due
			}
			return c.runAdd(input)
		},
	}
	addCmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	addCmd.Flags().StringVarP(&priority, "priority", "p", string(task.PriorityMedium), "low, medium or high")
	addCmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")

	var title string
	var newDescription, newPriority, newDue string
	var completed, clearDue bool
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change selected fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := task.UpdateTaskInput{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("title") {
				input.Title = task.Some(title)
			}
			if flags.Changed("description") {
				input.Description = task.Some(newDescription)
			}
			if flags.Changed("priority") {
				input.Priority = task.Some(task.Priority(newPriority))
			}
			if flags.Changed("completed") {
				input.Completed = task.Some(completed)
			}
			if flags.Changed("due") {
				input.DueDate = task.Some(&newDue)
			}
			if clearDue {
				input.DueDate = task.Optional[*string]{Set: true, Null: true}
			}
			if input.Empty() {
				return fmt.Errorf("nothing to change; pass at least one of --title, --description, --priority, --completed, --due, --clear-due")
			}
			return c.runEdit(input)
		},
	}
	editCmd.Flags().StringVar(&title, "title", "", "new title")
	editCmd.Flags().StringVarP(&newDescription, "description", "d", "", "new description")
	editCmd.Flags().StringVarP(&newPriority, "priority", "p", "", "new priority")
	editCmd.Flags().BoolVar(&completed, "completed", false, "mark completed (--completed=false to reopen)")
	editCmd.Flags().StringVar(&newDue, "due", "", "new due date")
	editCmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	editCmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	toggleCmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runToggle(args[0])
		},
	}

	rmCmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRemove(args[0])
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count tasks by status and priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStats()
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPing()
		},
	}

	rootCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, toggleCmd, rmCmd, statsCmd, pingCmd)
	rootCmd.SetOut(out)
	return rootCmd
}

func main() {
	utils.SetupLogger(false, false)
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (c *cli) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *cli) runList(filter client.Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	ctx, cancel := c.requestContext()
	defer cancel()

	tasks, err := c.client.Tasks(ctx)
	if err != nil {
		return err
	}
	visible := filter.Apply(tasks)
	if len(visible) == 0 {
		fmt.Fprintln(c.out, "No tasks")
	} else {
		c.printTable(visible)
	}
	fmt.Fprintln(c.out, metric.Count(tasks, time.Now()).Summary())
	return nil
}

func (c *cli) runShow(ids []string) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	tasks, errs, err := c.client.TasksByID(ctx, ids...)
	if err != nil {
		return err
	}
	var failed error
	for i, t := range tasks {
		if errs[i] != nil {
			fmt.Fprintf(c.out, "%s: %v\n", ids[i], errs[i])
			failed = errs[i]
			continue
		}
		c.printTask(t)
	}
	return failed
}

func (c *cli) runAdd(input task.CreateTaskInput) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	t, err := c.client.CreateTask(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %s\n", t.ID)
	return nil
}

func (c *cli) runEdit(input task.UpdateTaskInput) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	t, err := c.client.UpdateTask(ctx, input)
	if err != nil {
		return err
	}
	c.printTask(t)
	return nil
}

func (c *cli) runToggle(id string) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	t, err := c.client.ToggleTask(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is now %s\n", t.ID, statusLabel(t.Completed))
	return nil
}

func (c *cli) runRemove(id string) error {
	ctx, cancel := c.requestContext()
	defer cancel()

	if err := c.client.DeleteTask(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %s\n", id)
	return nil
}

func (c *cli) runStats() error {
	ctx, cancel := c.requestContext()
	defer cancel()

	counts, err := metric.NewMetricService(c.client).TaskCounts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "total\t%d\n", counts.Total)
	fmt.Fprintf(w, "active\t%d\n", counts.Active)
	fmt.Fprintf(w, "completed\t%d\n", counts.Completed)
	fmt.Fprintf(w, "overdue\t%d\n", counts.Overdue)
	for _, p := range task.Priorities {
		fmt.Fprintf(w, "%s\t%d\n", p, counts.ByPriority[p])
	}
	return w.Flush()
}

func (c *cli) runPing() error {
	ctx, cancel := c.requestContext()
	defer cancel()

	msg, err := c.client.Hello(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

func (c *cli) printTable(tasks []task.Task) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, statusLabel(t.Completed), t.Priority, dueLabel(t.DueDate), t.Title)
	}
	w.Flush()
}

func (c *cli) printTask(t *task.Task) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", t.ID)
	fmt.Fprintf(w, "title\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "description\t%s\n", t.Description)
	}
	fmt.Fprintf(w, "status\t%s\n", statusLabel(t.Completed))
	fmt.Fprintf(w, "priority\t%s\n", t.Priority)
	fmt.Fprintf(w, "due\t%s\n", dueLabel(t.DueDate))
	fmt.Fprintf(w, "created\t%s\n", t.CreatedAt.Local().Format(time.DateTime))
	w.Flush()
}

func statusLabel(completed bool) string {
	if completed {
		return "completed"
	}
	return "active"
}

func dueLabel(due *string) string {
	if due == nil {
		return "-"
	}
	return *due
}
