package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/models"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds models.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.desk.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			a.printf("Signed in as %s (%s)\n", user.FullName, user.Email)
			a.printf("export COMPLAINTDESK_TOKEN=%s\n", a.desk.Auth.Token())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg models.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.desk.API.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password")
	cmd.Flags().StringVar(&reg.ConfirmPassword, "confirm", "", "password again")
	return cmd
}

func newPasswordCmd(a *app) *cobra.Command {
	var oldPassword, newPassword, confirm string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.desk.ChangePassword(cmd.Context(), oldPassword, newPassword, confirm); err != nil {
				return err
			}
			a.printf("%s\n", a.text("password.changed"))
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "new password again")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var name, email, phone string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit the profile of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.FullName = &name
			}
			if cmd.Flags().Changed("email") {
				patch.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				patch.Phone = &phone
			}
			user, err := a.desk.UpdateProfile(cmd.Context(), patch)
			if err != nil {
				return err
			}
			a.printf("%s <%s> %s\n", user.FullName, user.Email, user.Phone)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	return cmd
}

// loadComplaints fills the store cache for the signed-in user.
func loadComplaints(cmd *cobra.Command, a *app) error {
	userID, err := a.desk.Auth.UserID()
	if err != nil {
		return err
	}
	_, err = a.desk.Store.Load(cmd.Context(), userID)
	return err
}

func printComplaints(a *app, list []models.Complaint) {
	if len(list) == 0 {
		a.printf("%s\n", a.text("complaint.none"))
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tTITLE\tCREATED")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.ComplaintType, c.Status, c.Title, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func newListCmd(a *app) *cobra.Command {
	var filter string
	names := make([]string, 0, len(complaint.Criteria))
	for _, c := range complaint.Criteria {
		names = append(names, string(c))
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your complaints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadComplaints(cmd, a); err != nil {
				return err
			}
			printComplaints(a, a.desk.Store.Filter(complaint.Criterion(filter)))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", string(complaint.All), "one of "+strings.Join(names, ", "))
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show complaint counts and unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash, err := a.desk.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			st := dash.Stats
			a.printf("Total: %d\nPending: %d\nAssigned: %d\nResolved: %d\n", st.Total, st.Pending, st.Assigned, st.Resolved)
			a.printf("Unread notifications: %d\n", a.desk.Inbox.Unread())
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var draft models.ComplaintDraft
	var typ string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a complaint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.ComplaintType = models.ComplaintType(typ)
			created, err := a.desk.Submit(cmd.Context(), draft)
			if err != nil {
				return err
			}
			a.printf("%s: #%s (%s)\n", a.text("complaint.created"), created.ID, created.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&draft.Title, "title", "", "short summary")
	cmd.Flags().StringVar(&draft.Description, "description", "", "details")
	cmd.Flags().StringVar(&typ, "type", string(models.ComplaintCommon), "common or private")
	cmd.Flags().StringVar(&draft.Address, "address", "", "where it happened")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var title, description, typ, address string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.ComplaintPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("type") {
				t := models.ComplaintType(typ)
				patch.ComplaintType = &t
			}
			if cmd.Flags().Changed("address") {
				patch.Address = &address
			}

			if err := loadComplaints(cmd, a); err != nil {
				return err
			}
			updated, err := a.desk.Edit(cmd.Context(), models.ComplaintID(args[0]), patch)
			if err != nil {
				return err
			}
			a.printf("%s: #%s %s\n", a.text("complaint.updated"), updated.ID, updated.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&typ, "type", "", "common or private")
	cmd.Flags().StringVar(&address, "address", "", "new address")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				a.printf("%s (--yes)\n", a.text("complaint.delete_confirm"))
			}
			if err := loadComplaints(cmd, a); err != nil {
				return err
			}
			if err := a.desk.Delete(cmd.Context(), models.ComplaintID(args[0]), yes); err != nil {
				return err
			}
			a.printf("%s\n", a.text("complaint.deleted"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func newNotificationsCmd(a *app) *cobra.Command {
	var readAll bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.desk.Auth.UserID()
			if err != nil {
				return err
			}
			list, err := a.desk.Inbox.Load(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if readAll {
				a.desk.Inbox.MarkAllRead()
				list = a.desk.Inbox.List()
			}
			if len(list) == 0 {
				a.printf("%s\n", a.text("notifications.none"))
				return nil
			}
			for _, n := range list {
				mark := " "
				if n.Unread {
					mark = "*"
				}
				a.printf("%s %s  %s\n", mark, n.Title, n.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readAll, "read-all", false, "mark every notification read")
	return cmd
}

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [toggle|light|dark]",
		Short:     "Show or change the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"toggle", string(models.ThemeLight), string(models.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := a.desk.Prefs.Theme()
			var err error
			switch {
			case len(args) == 0:
			case args[0] == "toggle":
				theme, err = a.desk.Prefs.Toggle()
			default:
				theme = models.Theme(args[0])
				err = a.desk.Prefs.SetTheme(theme)
			}
			if err != nil {
				return err
			}
			a.printf("%s\n", a.text("theme.current", theme))
			return nil
		},
	}
}
