package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	env "github.com/imposting/publish-core/configuration"
)

// PexelsClient is the image-search collaborator: it resolves a text post
// to a relevant stock photo staged under the temp dir.
type PexelsClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewPexelsClient() *PexelsClient {
	return &PexelsClient{
		endpoint:   env.GetEnvConfigs().PexelsEndpoint,
		apiKey:     os.Getenv("PEXELS_API_KEY"),
		httpClient: http.DefaultClient,
	}
}

type pexelsSearchResponse struct {
	Photos []struct {
		Src struct {
			Large2x  string `json:"large2x"`
			Original string `json:"original"`
		} `json:"src"`
	} `json:"photos"`
}

func (c *PexelsClient) FindBackground(ctx context.Context, text string) (string, error) {
	params := url.Values{}
	params.Set("query", searchQueryFromText(text))
	params.Set("per_page", "1")
	params.Set("orientation", "portrait")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/search?%s", strings.TrimRight(c.endpoint, "/"), params.Encode()), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pexels search: status %d", resp.StatusCode)
	}

	var search pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return "", err
	}
	if len(search.Photos) == 0 {
		return "", fmt.Errorf("pexels search: no photos for query")
	}
	photoUrl := search.Photos[0].Src.Large2x
	if photoUrl == "" {
		photoUrl = search.Photos[0].Src.Original
	}

	return c.download(ctx, photoUrl)
}

func (c *PexelsClient) download(ctx context.Context, photoUrl string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoUrl, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pexels download: status %d", resp.StatusCode)
	}

	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s.jpg", uuid.New().String()))
	file, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

// searchQueryFromText keeps the first handful of words; full captions make
// poor search queries.
func searchQueryFromText(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}
