package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "blog_post_views_total",
	Help: "Post detail pages served.",
})
