package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lobbyd/lobbyd/pkg/log"
	"github.com/lobbyd/lobbyd/pkg/version"
)

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": version.Get(),
		}); err != nil {
			log.Error("failed to encode health response: %v", err)
			http.Error(w, "Failed to encode health response", http.StatusInternalServerError)
		}
	}
}

func HandleHello() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"message": "Hello World!",
		}); err != nil {
			log.Error("failed to encode hello response: %v", err)
			http.Error(w, "Failed to encode hello response", http.StatusInternalServerError)
		}
	}
}
