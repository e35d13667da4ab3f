package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kavia-common/collaborative-task-board-139157-139166/board"
	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

func boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List boards",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			active, _ := s.orch.ActiveBoard()
			printBoards(cmd.OutOrStdout(), s.orch.Boards(), active.ID)
			return nil
		}),
	}
}

func addBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-board",
		Short: "Create the next numbered board and select it",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			b, err := s.orch.AddBoard(ctx)
			if err != nil && b.ID == "" {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", b.Name, b.ID)
			return nil
		}),
	}
}

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Show the tasks of the active board by column",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			printColumns(cmd.OutOrStdout(), s.orch.Columns(), s.orch.Store().ByStatus())
			return nil
		}),
	}
}

func addTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-task",
		Short: "Add a new task to the first column",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			t, err := s.orch.AddTask(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s at %d\n", t.ID, t.Status, t.Position)
			return nil
		}),
	}
}

func moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <column> [index]",
		Short: "Move a task to a column, at the end unless an index is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			dst := domain.Status(args[1])
			if !s.cfg.Columns.Contains(dst) {
				return fmt.Errorf("%w %q", domain.ErrUnknownStatus, dst)
			}
			index := len(s.orch.Store().Column(dst))
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid index %q", args[2])
				}
				index = n
			}
			if err := s.orch.MoveTaskTo(ctx, args[0], dst, index); err != nil {
				return err
			}
			t, _ := s.orch.Store().Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s at %d\n", t.ID, t.Status, t.Position)
			return nil
		}),
	}
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Edit the title, description, priority or assignee of a task",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("priority", "", "New priority (low, medium, high)")
	cmd.Flags().String("assignee", "", "New assignee")
	cmd.RunE = withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
		cur, ok := s.orch.Store().Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", board.ErrTaskNotFound, args[0])
		}
		flags := cmd.Flags()
		if flags.Changed("title") {
			cur.Title, _ = flags.GetString("title")
		}
		if flags.Changed("description") {
			cur.Description, _ = flags.GetString("description")
		}
		if flags.Changed("priority") {
			p, _ := flags.GetString("priority")
			cur.Priority = domain.Priority(p)
		}
		if flags.Changed("assignee") {
			cur.Assignee, _ = flags.GetString("assignee")
		}
		t, err := s.orch.EditTask(ctx, cur)
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), t)
		return nil
	})
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			if err := s.client.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func activityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Show the newest activity of the active board",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			printActivity(cmd.OutOrStdout(), s.orch.Feed().Entries())
			return nil
		}),
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the board every time it changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, cmd *cobra.Command, s *session, args []string) error {
			changes, stop := s.orch.Store().Watch()
			defer stop()
			out := cmd.OutOrStdout()
			printColumns(out, s.orch.Columns(), s.orch.Store().ByStatus())
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changes:
					fmt.Fprintln(out)
					printColumns(out, s.orch.Columns(), s.orch.Store().ByStatus())
				}
			}
		}),
	}
}
