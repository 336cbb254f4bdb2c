// Command initdata-sign builds a signed initData blob for exercising the mini
// app flow without a Telegram client.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/orlandnut/voicednut/internal/initdata"
)

func main() {
	var (
		token     = flag.String("token", os.Getenv("BOT_TOKEN"), "bot token (defaults to $BOT_TOKEN)")
		userID    = flag.Int64("user-id", 0, "Telegram user id to embed")
		firstName = flag.String("first-name", "", "user first_name")
		username  = flag.String("username", "", "user username")
		authDate  = flag.Int64("auth-date", 0, "auth_date unix seconds (default now)")
		extra     = flag.StringArray("field", nil, "extra key=value field, repeatable")
		verify    = flag.String("verify", "", "verify an existing blob instead of signing")
	)
	flag.Parse()

	if *token == "" {
		fail("token is required (--token or BOT_TOKEN)")
	}
	v := initdata.NewVerifier(*token)

	if *verify != "" {
		if !v.Verify(*verify) {
			fail("invalid signature")
		}
		fmt.Println("ok")
		return
	}

	if *userID == 0 {
		fail("--user-id is required")
	}
	user, err := json.Marshal(initdata.User{ID: *userID, FirstName: *firstName, Username: *username})
	if err != nil {
		fail(err.Error())
	}
	if *authDate == 0 {
		*authDate = time.Now().Unix()
	}
	fields := map[string]string{
		"auth_date": strconv.FormatInt(*authDate, 10),
		"user":      string(user),
	}
	for _, kv := range *extra {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			fail(fmt.Sprintf("bad --field %q, want key=value", kv))
		}
		fields[k] = val
	}
	fmt.Println(v.Encode(fields))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "initdata-sign:", msg)
	os.Exit(1)
}
