package main

import (
	"sync"

	"github.com/facebookgo/stats"
	"github.com/sirupsen/logrus"
)

// counters totals the stats bumped while a command runs, so they can be
// logged once it finishes.
type counters struct {
	m    sync.Mutex
	sums map[string]float64
	avgs map[string]*average
}

type average struct {
	total float64
	n     int
}

func newCounters() *counters {
	return &counters{
		sums: make(map[string]float64),
		avgs: make(map[string]*average),
	}
}

func (c *counters) client() stats.Client {
	return &stats.HookClient{
		BumpSumHook: func(key string, val float64) {
			c.m.Lock()
			c.sums[key] += val
			c.m.Unlock()
		},
		BumpAvgHook: func(key string, val float64) {
			c.m.Lock()
			a := c.avgs[key]
			if a == nil {
				a = &average{}
				c.avgs[key] = a
			}
			a.total += val
			a.n++
			c.m.Unlock()
		},
	}
}

// fields returns every sum and average keyed by stat name.
func (c *counters) fields() logrus.Fields {
	c.m.Lock()
	defer c.m.Unlock()
	result := make(logrus.Fields, len(c.sums)+len(c.avgs))
	for k, v := range c.sums {
		result[k] = v
	}
	for k, a := range c.avgs {
		result[k] = a.total / float64(a.n)
	}
	return result
}

func (c *counters) report(log logrus.FieldLogger) {
	fields := c.fields()
	if len(fields) == 0 {
		return
	}
	log.WithFields(fields).Infoln("stats")
}
