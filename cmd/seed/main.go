package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"reelshare/pkg/config"
	"reelshare/pkg/logger"
)

type seedUser struct {
	email    string
	username string
	password string
	role     string
}

type seedFilm struct {
	title         string
	genre         string
	directPrice   string
	nftPrice      string
	pricePerShare string
	totalShares   int
	creatorShare  int
	investorShare int
	platformFee   int
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID               string `json:"id"`
		Username         string `json:"username"`
		CustodialAddress string `json:"custodial_address"`
	} `json:"user"`
}

func main() {
	var withFilms bool
	flag.BoolVar(&withFilms, "films", true, "upload sample films for the seeded producers")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	httpClient := &http.Client{
		Timeout: 5 * time.Minute,
	}

	if err := seed(httpClient, cfg, withFilms, log); err != nil {
		log.Error("Failed to seed: %v", err)
		panic(err)
	}

	log.Info("Seeded successfully!")
}

func seed(httpClient *http.Client, cfg *config.Config, withFilms bool, log *logger.Logger) error {
	users := []seedUser{
		{"ava@test.com", "ava_films", "password123", "producer"},
		{"ben@test.com", "ben_studio", "password123", "producer"},
		{"cleo@test.com", "cleo", "password123", "viewer"},
		{"dev@test.com", "dev", "password123", "viewer"},
	}
	films := []seedFilm{
		{"Night Train", "drama", "1.5", "25", "0.5", 1000, 60, 30, 10},
		{"Salt Flats", "documentary", "2", "", "1", 500, 70, 20, 10},
	}

	for _, u := range users {
		auth, err := registerOrLogin(httpClient, cfg.AuthServiceURL, u)
		if err != nil {
			log.Error("Failed to seed user %s: %v", u.username, err)
			continue
		}
		log.Info("User %s (%s) custodial wallet %s: fund it with the payment token to buy", auth.User.Username, u.role, auth.User.CustodialAddress)

		if u.role != "producer" || !withFilms {
			continue
		}
		for _, f := range films {
			title := fmt.Sprintf("%s by %s", f.title, u.username)
			if err := uploadFilm(httpClient, cfg.FilmServiceURL, auth.Token, title, f); err != nil {
				log.Error("Failed to upload %q: %v", title, err)
				continue
			}
			log.Info("Uploaded film %q", title)
		}
	}
	return nil
}

func registerOrLogin(httpClient *http.Client, baseURL string, u seedUser) (*authResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    u.email,
		"username": u.username,
		"password": u.password,
		"role":     u.role,
	})
	resp, err := httpClient.Post(baseURL+"/api/v1/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		body, _ = json.Marshal(map[string]string{"email": u.email, "password": u.password})
		resp, err = httpClient.Post(baseURL+"/api/v1/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to login: %w", err)
		}
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &auth, nil
}

func uploadFilm(httpClient *http.Client, baseURL, token, title string, f seedFilm) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"title":           title,
		"description":     "Seeded sample film",
		"genre":           f.genre,
		"duration":        "5400",
		"release_date":    time.Now().Format("2006-01-02"),
		"direct_price":    f.directPrice,
		"nft_price":       f.nftPrice,
		"price_per_share": f.pricePerShare,
		"total_shares":    fmt.Sprint(f.totalShares),
		"creator_share":   fmt.Sprint(f.creatorShare),
		"investor_share":  fmt.Sprint(f.investorShare),
		"platform_fee":    fmt.Sprint(f.platformFee),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("media", "sample.mp4")
	if err != nil {
		return err
	}
	// Placeholder media: the seed only needs a stored object with a stable hash.
	if _, err := part.Write([]byte("reelshare sample media: " + title)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/films/upload", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("film service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
