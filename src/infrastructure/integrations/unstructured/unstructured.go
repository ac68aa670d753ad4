package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Service calls an Unstructured partition API to turn binary documents
// (PDF, Word) into plain text elements. Layout understanding beyond what
// the API returns is out of scope.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

// Element is one partitioned fragment of a document.
type Element struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	ElementID string   `json:"element_id"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	Filename   string `json:"filename,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
}

func NewService(baseURL string, c *http.Client) *Service {
	if c == nil {
		c = &http.Client{}
	}
	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

// Partition sends the document to the partition endpoint and returns the
// text of every non-empty element, in document order.
func (s *Service) Partition(ctx context.Context, filename string, content []byte) ([]string, error) {
	var requestBody bytes.Buffer
	multipartWriter := multipart.NewWriter(&requestBody)

	fileWriter, err := multipartWriter.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := multipartWriter.WriteField("output_format", "application/json"); err != nil {
		return nil, fmt.Errorf("failed to write output format: %w", err)
	}
	multipartWriter.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/general/v0/general", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("partition service error: %s: %s", resp.Status, string(body))
	}

	var elements []Element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	texts := make([]string, 0, len(elements))
	for _, element := range elements {
		if text := strings.TrimSpace(element.Text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}
