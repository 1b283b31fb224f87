package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"github.com/richl9/drgn-tools/internal/model"
)

// Load reads a snapshot file, strips JSONC comments and trailing
// commas, decodes it, and builds a Program.
//
// A missing file returns a CLIError with ExitDumpNotFound so the CLI
// maps it to the right exit code; malformed content returns a wrapped
// parse error naming the path.
func Load(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitDumpNotFound,
				fmt.Sprintf("snapshot not found: %s", path),
				err,
			)
		}
		return nil, errors.Wrapf(err, "reading snapshot %s", path)
	}

	// Capture pipelines annotate snapshots with comments; strip them
	// before handing the bytes to encoding/json.
	clean := jsonc.ToJSON(raw)

	var data Data
	if err := json.Unmarshal(clean, &data); err != nil {
		return nil, errors.Wrapf(err, "parsing snapshot %s", path)
	}

	prog, err := New(&data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading snapshot %s", path)
	}
	return prog, nil
}
