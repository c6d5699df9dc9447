package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/sink"
	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

type decodeRequest struct {
	Telegram string `json:"telegram" binding:"required"`
	Driver   string `json:"driver"`
	Publish  bool   `json:"publish"`
}

type decodeResponse struct {
	Driver        string          `json:"driver"`
	Telegram      map[string]any  `json:"telegram,omitempty"`
	DefaultFields []gowmbus.Field `json:"default_fields,omitempty"`
	MessageID     string          `json:"message_id,omitempty"`
	PublishError  string          `json:"publish_error,omitempty"`
}

// POST /api/v1/decode
func (s *Server) decode(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	res, err := s.analyzer.AnalyzeHex(ctx, req.Telegram, gowmbus.AnalyzeOptions{Driver: req.Driver})
	switch {
	case errors.Is(err, gowmbus.ErrUnknownDriver):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := decodeResponse{
		Driver:        res.Driver,
		Telegram:      res.Fields,
		DefaultFields: res.DefaultFields(),
	}
	if req.Publish && s.publisher != nil && res.Readout != nil {
		msg, err := s.publisher.Publish(ctx, res)
		if s.metrics != nil {
			s.metrics.ObservePublish(err)
		}
		if err != nil {
			resp.PublishError = err.Error()
		} else {
			resp.MessageID = msg.ID
		}
	}
	c.JSON(http.StatusOK, resp)
}

type driverSummary struct {
	Name          string   `json:"name"`
	MeterType     string   `json:"meter_type"`
	LinkModes     []string `json:"link_modes"`
	Detections    []string `json:"detections"`
	DefaultFields []string `json:"default_fields"`
	Fields        int      `json:"fields"`
}

func summarize(info *driver.Info) driverSummary {
	sum := driverSummary{
		Name:          info.Name(),
		MeterType:     info.MeterType().String(),
		DefaultFields: info.DefaultFields(),
		Fields:        len(info.Fields()),
	}
	for _, l := range info.LinkModes() {
		sum.LinkModes = append(sum.LinkModes, l.String())
	}
	for _, d := range info.Detections() {
		sum.Detections = append(sum.Detections, d.String())
	}
	return sum
}

// GET /api/v1/drivers
func (s *Server) listDrivers(c *gin.Context) {
	drivers := s.analyzer.Registry().Drivers()
	out := make([]driverSummary, 0, len(drivers))
	for _, info := range drivers {
		out = append(out, summarize(info))
	}
	c.JSON(http.StatusOK, gin.H{"drivers": out, "count": len(out)})
}

type fieldDetail struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Quantity    string `json:"quantity,omitempty"`
	Match       string `json:"match"`
}

// GET /api/v1/drivers/:name
func (s *Server) getDriver(c *gin.Context) {
	info, ok := s.analyzer.Registry().Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}
	fields := make([]fieldDetail, 0, len(info.Fields()))
	for _, f := range info.Fields() {
		d := fieldDetail{
			Name:        f.Name,
			Description: f.Description,
			Kind:        "string",
			Match:       f.Matcher.String(),
		}
		if f.Kind == driver.NumericField {
			d.Kind = "numeric"
			d.Quantity = f.Numeric.Quantity.String()
		}
		fields = append(fields, d)
	}
	c.JSON(http.StatusOK, gin.H{"driver": summarize(info), "fields": fields})
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// GET /api/v1/meters/:id/history?limit=n
func (s *Server) meterHistory(c *gin.Context) {
	id := c.Param("id")
	limit := int64(defaultHistoryLimit)
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	msgs, err := s.history.History(c.Request.Context(), id, limit)
	if err != nil {
		s.log.WithError(err).WithField("id", id).Warn("read meter history failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []sink.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "messages": msgs, "count": len(msgs)})
}
