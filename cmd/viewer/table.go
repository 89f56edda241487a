package main

import (
	"context"
	"fmt"
	"io"
	"match-chat/domain"
	"match-chat/internal"
	"match-chat/repositories"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type query struct {
	what   string
	user   string
	room   string
	prefix string
	all    bool
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func dump(ctx context.Context, w io.Writer, db *badger.DB, repository *repositories.ChatRepository, q query) error {
	switch q.what {
	case "users":
		users, err := repository.ListUsers(ctx)
		if err != nil {
			return err
		}
		table := newTable(w, "UUID", "Username", "Online", "Last seen")
		for _, u := range users {
			table.Append([]string{string(u.UUID), u.Username, strconv.FormatBool(u.Online), millis(u.LastSeen)})
		}
		table.Render()
	case "conversations":
		if q.user == "" {
			return fmt.Errorf("-user is required")
		}
		conversations, err := repository.GetConversations(ctx, domain.UserID(q.user))
		if err != nil {
			return err
		}
		table := newTable(w, "UUID", "Users", "Messages", "Last message")
		for _, c := range conversations {
			last := "-"
			if len(c.Messages) > 0 {
				last = c.Messages[len(c.Messages)-1].Payload
			}
			names := lo.Map(c.Users, func(u domain.ConversationUser, _ int) string { return u.Username })
			table.Append([]string{string(c.UUID), strings.Join(names, ", "), strconv.Itoa(len(c.Messages)), last})
		}
		table.Render()
	case "messages":
		if q.room == "" {
			return fmt.Errorf("-room is required")
		}
		table := newTable(w, "At", "Author", "Message", "UUID")
		var cursor *string
		var pages [][]domain.ChatMessage
		for {
			messages, next, err := repository.GetMessages(ctx, domain.RoomID(q.room), cursor)
			if err != nil {
				return err
			}
			pages = append(pages, messages)
			if !q.all || next == nil {
				break
			}
			cursor = next
		}
		// Pages come newest first, each in chronological order
		for i := len(pages) - 1; i >= 0; i-- {
			for _, m := range pages[i] {
				table.Append([]string{millis(m.CreatedAt), m.AuthorUsername, m.Payload, m.UUID})
			}
		}
		table.Render()
	case "notifications":
		if q.user == "" {
			return fmt.Errorf("-user is required")
		}
		notifications, err := repository.GetNotifications(ctx, domain.UserID(q.user))
		if err != nil {
			return err
		}
		table := newTable(w, "At", "Type", "Message", "Seen")
		for _, n := range notifications {
			table.Append([]string{millis(n.CreatedAt), string(n.Type), n.Message, strconv.FormatBool(n.Seen)})
		}
		table.Render()
	case "raw":
		rows, _, err := internal.ScanKeys(db, q.prefix, 0, nil)
		if err != nil {
			return err
		}
		table := newTable(w, "Key", "Kind", "At", "Owner", "ID", "Value")
		for _, row := range rows {
			table.Append([]string{row.Key, row.Kind, row.At, row.Owner, row.ID, row.Value})
		}
		table.Render()
	default:
		return fmt.Errorf("unknown -what %q", q.what)
	}
	return nil
}

func millis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.DateTime)
}
