package openaq

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const apiTimeLayout = "2006-01-02T15:04:05Z"

type Page struct {
	Number  int
	Found   Found
	Results []MeasurementRecord
}

// Measurements returns the pages of a sensor's readings between from and to.
// The sequence is lazy and finite: it ends after a short or empty page, once
// the reported total is reached, or after the configured page ceiling. A
// failed page is yielded as an error and ends the sequence. Ranging again
// starts over from page one.
func (c *client) Measurements(ctx context.Context, sensorID int64, from, to time.Time) iter.Seq2[Page, error] {
	path := fmt.Sprintf("/sensors/%d/measurements", sensorID)

	return func(yield func(Page, error) bool) {
		for number := 1; ; number++ {
			query := url.Values{
				"datetime_from": {from.UTC().Format(apiTimeLayout)},
				"datetime_to":   {to.UTC().Format(apiTimeLayout)},
				"limit":         {strconv.Itoa(c.pageLimit)},
				"page":          {strconv.Itoa(number)},
			}
			res := measurementsResponse{}
			if err := c.getJSON(ctx, path, query, &res); err != nil {
				yield(Page{Number: number}, err)
				return
			}

			page := Page{Number: number, Found: res.Meta.Found, Results: res.Results}
			if !yield(page, nil) {
				return
			}
			if c.lastPage(page) {
				return
			}
			if number >= c.maxPages {
				c.logger.Warn("page ceiling reached, stopping pagination",
					zap.Int64("sensor_id", sensorID),
					zap.Int("max_pages", c.maxPages))
				return
			}
		}
	}
}

func (c *client) lastPage(p Page) bool {
	if len(p.Results) == 0 || len(p.Results) < c.pageLimit {
		return true
	}
	return p.Found.Known && p.Number*c.pageLimit >= p.Found.Count
}
