package database

import (
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

func NewElasticsearch(addresses []string, username, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   16,
			ResponseHeaderTimeout: 90 * time.Second,
		},
	})
}
