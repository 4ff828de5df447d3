package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Finding-a-partner/finding-a-partner/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// badger_inspect dumps the store in a readable table. Run it against a
// stopped server: badger holds an exclusive lock on the directory.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, chat:, member:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append([]string{key, describe(key, v)})
				return nil
			})
			if err != nil {
				fmt.Printf("Error reading key %s: %v\n", key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

func describe(key string, value []byte) string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var message domain.Message
		if err := json.Unmarshal(value, &message); err != nil {
			return fmt.Sprintf("unreadable: %v", err)
		}
		return fmt.Sprintf("%s %s %q", message.Sender, colorStatus(message.Status), message.Content)
	case strings.HasPrefix(key, "chat:"):
		var chat domain.Chat
		if err := json.Unmarshal(value, &chat); err != nil {
			return fmt.Sprintf("unreadable: %v", err)
		}
		name := ""
		if chat.Name != nil {
			name = *chat.Name
		}
		return fmt.Sprintf("%s %q created %s", chat.Type, name, chat.CreatedAt.Format("2006-01-02 15:04:05"))
	case strings.HasPrefix(key, "member:"):
		var member domain.Participant
		if err := json.Unmarshal(value, &member); err != nil {
			return fmt.Sprintf("unreadable: %v", err)
		}
		return fmt.Sprintf("%s as %s", member.Identity, member.Role)
	default:
		return string(value)
	}
}

func colorStatus(status domain.MessageStatus) string {
	switch status {
	case domain.StatusRead:
		return color.Green.Sprint(status)
	case domain.StatusDelivered:
		return color.Yellow.Sprint(status)
	default:
		return color.Gray.Sprint(status)
	}
}
