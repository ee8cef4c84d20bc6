package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const NA = "N/A"

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

func init() {
	node, _ = snowflake.NewNode(1)
}

// SetNodeID switches the snowflake node used by UUIDint64. Each running
// instance sharing a database should use a distinct node id (0-1023).
func SetNodeID(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	nodeMu.Lock()
	node = n
	nodeMu.Unlock()
	return nil
}

// UUIDint64 returns a time ordered unique int64 id
func UUIDint64() int64 {
	nodeMu.Lock()
	n := node
	nodeMu.Unlock()
	return n.Generate().Int64()
}

func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}
