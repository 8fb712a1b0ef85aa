package telegram

import (
	"fmt"
	"log"
	"os"
	"strings"

	"ecolookapi/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var usernames string = os.Getenv("TG_ADMINS") // separated by comma from env

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

func isAdmin(username string) bool {
	for _, admin := range strings.Split(usernames, ",") {
		if admin != "" && admin == username {
			return true
		}
	}
	return false
}

// RunOpsBot is a small operator bot: /stats dumps user and wardrobe counters,
// only for usernames listed in TG_ADMINS.
func RunOpsBot(e *echo.Echo, db *gorm.DB) {

	bot, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
	if err != nil {
		println("Error tg bot init")
		log.Panic(err)
	}
	bot.Debug = true

	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
		if !isAdmin(update.Message.From.UserName) {
			continue
		}

		switch update.Message.Command() {
		case "start":
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Ops bot ready. Use /stats for service counters.")
			bot.Send(msg)
		case "stats":
			var userCount, itemCount, lookCount int64
			db.Model(&models.UserAccount{}).Count(&userCount)
			db.Model(&models.ClothingItem{}).Count(&itemCount)
			db.Model(&models.Look{}).Count(&lookCount)

			text := fmt.Sprintf(
				"```\nUsers:  %v\nItems:  %v\nLooks:  %v\n```",
				userCount, itemCount, lookCount,
			)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
			msg.ParseMode = "markdown"
			bot.Send(msg)
		}
	}
}
