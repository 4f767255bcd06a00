package memory_test

import (
	"testing"

	"github.com/warp/warehouse-engine/store/memory"
	"github.com/warp/warehouse-engine/store/storetest"
	"github.com/warp/warehouse-engine/warehousing"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) warehousing.TxStore {
		return memory.New()
	})
}
