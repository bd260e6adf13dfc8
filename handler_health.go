package labflow

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// BuildVersion is stamped by the build pipeline via -ldflags
var BuildVersion string

var startedAt = time.Now()

type healthTO struct {
	Service      string   `json:"service"`
	Status       string   `json:"status"`
	ApiVersion   []string `json:"apiVersion"`
	BuildVersion string   `json:"buildVersion"`
	Uptime       string   `json:"uptime"`
	Runtime      struct {
		HeapAlloc  string `json:"heapAlloc"`
		HeapInUse  string `json:"heapInUse"`
		StackInUse string `json:"stackInUse"`
		Sys        string `json:"sys"`
		Goroutines int    `json:"goroutines"`
	} `json:"runtime"`
}

func (api *api) GetHealth(c *gin.Context) {
	health := healthTO{
		Service:      "labflow",
		Status:       "running",
		ApiVersion:   []string{"v1"},
		BuildVersion: BuildVersion,
		Uptime:       time.Since(startedAt).Round(time.Second).String(),
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	health.Runtime.HeapAlloc = mebibytes(memStats.HeapAlloc)
	health.Runtime.HeapInUse = mebibytes(memStats.HeapInuse)
	health.Runtime.StackInUse = mebibytes(memStats.StackInuse)
	health.Runtime.Sys = mebibytes(memStats.Sys)
	health.Runtime.Goroutines = runtime.NumGoroutine()

	c.JSON(http.StatusOK, health)
}

func mebibytes(bytes uint64) string {
	return fmt.Sprintf("%d MiB", bytes/1024/1024)
}
