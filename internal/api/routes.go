package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gptprojectmanager/utxoracle-go/internal/analyzer"
	"github.com/gptprojectmanager/utxoracle-go/internal/baseline"
	"github.com/gptprojectmanager/utxoracle-go/internal/store"
)

// Deps bundles the collaborators routes.go wires into the gin engine.
type Deps struct {
	Hub      *Hub
	Analyzer *analyzer.Analyzer
	Baseline *baseline.Calculator
	Auth     *Authenticator
	Budget   *ConnectionBudget
	// Store, if set, backs GET /history with persisted snapshots instead
	// of the single current in-memory snapshot.
	Store *store.Store
}

// SetupRouter builds the gin engine: CORS, health, WebSocket upgrade at
// /stream, and the /history REST endpoint for clients that prefer to poll
// rather than subscribe.
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	handler := &routeHandler{deps: deps}

	pub := r.Group("/")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", handler.handleStream)
	}

	hist := r.Group("/")
	hist.Use(ginBearerMiddleware(deps.Auth))
	{
		hist.GET("/history", handler.handleHistory)
	}

	return r
}

type routeHandler struct {
	deps Deps
}

func (h *routeHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "operational",
		"activeSubscribers": h.deps.Hub.Count(),
		"windowTxCount":     h.deps.Analyzer.Count(),
	})
}

// handleStream upgrades to a WebSocket connection managed by the Hub.
// gorilla/websocket upgrades directly against the underlying
// ResponseWriter, so this bypasses gin's JSON helpers.
func (h *routeHandler) handleStream(c *gin.Context) {
	h.deps.Hub.Serve(c.Writer, c.Request)
}

// handleHistory serves store-backed persisted price snapshots since the
// given cutoff, the same query the WS historical_request message answers
// from. With no store configured (dev mode, no DATABASE_URL) it falls back
// to the single current rolling-window snapshot and baseline.
func (h *routeHandler) handleHistory(c *gin.Context) {
	now := float64(time.Now().UnixNano()) / 1e9
	since := now - 3600
	if raw := c.Query("since"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			since = v
		}
	}

	points, err := queryHistory(c.Request.Context(), h.deps.Store, since)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{
			"windowTxCount": h.deps.Analyzer.Count(),
			"points":        points,
		})
		return
	}

	result, ok := h.deps.Analyzer.SnapshotPrice(now)

	resp := gin.H{
		"windowTxCount": h.deps.Analyzer.Count(),
	}
	if ok {
		resp["price"] = result.PriceUSD
		resp["confidence"] = result.Confidence
	}

	if b := h.deps.Baseline.Current(); b != nil {
		resp["baseline"] = gin.H{
			"price":           b.Price,
			"priceMin":        b.PriceMin,
			"priceMax":        b.PriceMax,
			"confidence":      b.Confidence,
			"blockHeight":     b.BlockHeight,
			"numTransactions": b.NumTransactions,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func ginBearerMiddleware(auth *Authenticator) gin.HandlerFunc {
	mw := BearerMiddleware(auth)
	return func(c *gin.Context) {
		handled := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handled = true
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !handled {
			c.Abort()
		}
	}
}
