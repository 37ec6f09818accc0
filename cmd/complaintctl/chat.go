package main

import (
	"bufio"
	"strings"

	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/models"

	"github.com/spf13/cobra"
)

const quitCommand = "/quit"

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id>",
		Short: "Chat with support about a complaint",
		Long:  "Chat with support about a complaint. Each input line is sent as a message; " + quitCommand + " or end of input leaves the chat.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadComplaints(cmd, a); err != nil {
				return err
			}
			id := models.ComplaintID(args[0])
			session, err := a.desk.OpenChat(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer a.desk.Chat.Close()
			a.printf("%s\n", a.text("chat.joined", id))
			return chatLoop(cmd, a, session)
		},
	}
}

func chatLoop(cmd *cobra.Command, a *app, session *chathub.Session) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-cmd.Context().Done():
				return
			}
		}
	}()

	events := session.Events()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == quitCommand {
				return nil
			}
			if line == "" {
				continue
			}
			if _, err := session.Send(line); err != nil {
				return err
			}

		case ev := <-events:
			switch ev.Kind {
			case chathub.EventMessageAppended:
				if ev.Message.Sender == models.SenderEmployee {
					a.printf("%s: %s\n", a.text("chat.agent"), ev.Message.Text)
				}
			case chathub.EventConnectionLost:
				return ev.Err
			}
		}
	}
}
