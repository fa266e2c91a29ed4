package main

import (
	"context"
	"sunvoy-scraper/cmd/sunvoy/commands"
	"sunvoy-scraper/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
