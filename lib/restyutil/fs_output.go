package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Output receives one formatted request/response pair per exchange.
type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every exchange to its own file inside a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears `dir` and recreates it so a run only holds its own exchanges.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// shared by every client so exchanges are numbered in the order they happened
var exchangeCounter uint64

// RecordExchanges writes every response `client` receives to `output`.
// `output` can be nil, in which case this is a no-op.
func RecordExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&exchangeCounter, 1)
		output.Write(
			fmt.Sprintf("%03d-%s.txt", id, res.Request.Method),
			formatHttpMessage(res),
		)
		return nil
	})
}
