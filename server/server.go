package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"newsdeck/models"
	"newsdeck/readstate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Deck is the part of the aggregation engine the HTTP API reads from
type Deck interface {
	Report() (models.AggregationReport, bool)
	DisplayLimit() int
	Refresh() bool
}

type ServerConfig struct {
	Deck Deck

	// Remembers which articles have been opened
	ReadState readstate.Store

	// Passes new reports to SSE clients
	Broadcaster *Broadcaster

	// Origins allowed to call the API from a browser
	AllowOrigins string

	// Interval between keep-alive pings on the event stream
	PingInterval time.Duration
}

type articleView struct {
	models.Article
	Read bool `json:"read"`
}

type articlesResponse struct {
	Articles      []articleView          `json:"articles"`
	FailedSources []models.SourceFailure `json:"failedSources"`
	FetchedAt     *time.Time             `json:"fetchedAt"`
}

// Returns a fiber.App serving the article API and the report event stream
func Server(config *ServerConfig) *fiber.App {
	bc := config.Broadcaster
	pingInterval := config.PingInterval
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	if config.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: config.AllowOrigins,
			AllowHeaders: "Cache-Control",
		}))
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/articles", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "0"))
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a non-negative integer"})
		}

		if limit == 0 {
			limit = config.Deck.DisplayLimit()
		}

		// One read, so articles and failures come from the same report
		report, ok := config.Deck.Report()
		articles := []models.Article{}
		if ok {
			articles = report.Articles[:max(0, min(limit, len(report.Articles)))]
		}
		ids := lo.Map(articles, func(a models.Article, _ int) string { return a.Id })

		read, err := config.ReadState.ReadSet(c.Context(), ids)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error reading read state")
			read = map[string]bool{}
		}

		response := articlesResponse{
			Articles: lo.Map(articles, func(a models.Article, _ int) articleView {
				return articleView{Article: a, Read: read[a.Id]}
			}),
			FailedSources: []models.SourceFailure{},
		}
		if ok {
			response.FailedSources = report.FailedSources
			response.FetchedAt = &report.FetchedAt
		}

		return c.JSON(response)
	})

	api.Get("/report", func(c *fiber.Ctx) error {
		report, ok := config.Deck.Report()
		if !ok {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending"})
		}
		return c.JSON(report)
	})

	api.Post("/refresh", func(c *fiber.Ctx) error {
		started := config.Deck.Refresh()
		log.WithFields(log.Fields{
			"started": started,
		}).Info("Manual refresh requested")
		return c.JSON(fiber.Map{"started": started})
	})

	api.Post("/articles/:id/read", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing article id"})
		}
		if err := config.ReadState.MarkRead(c.Context(), id); err != nil {
			log.WithFields(log.Fields{
				"id":    id,
				"error": err,
			}).Error("Error marking article read")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not mark article read"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Delete("/stream", func(c *fiber.Ctx) error {
		bc.RemoveClient(c.Query("key", ""))
		return c.Status(fiber.StatusOK).SendString("OK")
	})

	api.Get("/stream", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		key := uuid.New().String()
		reports := make(chan models.AggregationReport, 4)
		bc.AddClient(key, reports)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			alive := time.NewTicker(pingInterval)
			defer alive.Stop()
			defer func() {
				log.Infof("Cleaning up SSE stream for client: %s", key)
				bc.RemoveClient(key)
			}()

			if err := writeEvent(w, "init", []byte(key)); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-alive.C:
					if err := writeEvent(w, "ping", nil); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}

				case report, ok := <-reports:
					if !ok {
						log.Warnf("Report channel closed for client %s", key)
						return
					}
					data, err := json.Marshal(report)
					if err != nil {
						log.Errorf("Error marshalling report for client %s: %v", key, err)
						continue
					}
					if err := writeEvent(w, "report", data); err != nil {
						log.Warnf("Failed to send report to client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
