package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
)

const serviceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"

var errLogStreamEnded = errors.New("pod log stream ended")

// K8sClient provides in-cluster Kubernetes API access.
type K8sClient struct {
	namespace string
	apiBase   string
	tokenPath string
	client    *http.Client
}

func NewK8sClient(namespace string) *K8sClient {
	return &K8sClient{
		namespace: namespace,
		apiBase:   inClusterAPIBase(),
		tokenPath: serviceAccountToken,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (k *K8sClient) FindPod(ctx context.Context, labelSelector string) (string, error) {
	u := fmt.Sprintf("%s/api/v1/namespaces/%s/pods?labelSelector=%s&limit=1",
		k.apiBase, k.namespace, url.QueryEscape(labelSelector))

	resp, err := k.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("list pods: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode pods: %w", err)
	}
	if len(result.Items) == 0 {
		return "", fmt.Errorf("no pods found with label %s", labelSelector)
	}
	return result.Items[0].Metadata.Name, nil
}

// StreamLogs follows the pod's log from now on.
func (k *K8sClient) StreamLogs(ctx context.Context, podName string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/api/v1/namespaces/%s/pods/%s/log?follow=true&tailLines=0&timestamps=false",
		k.apiBase, k.namespace, podName)

	resp, err := k.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("stream logs: %w", err)
	}
	return resp.Body, nil
}

func (k *K8sClient) get(ctx context.Context, u string) (*http.Response, error) {
	token, err := os.ReadFile(k.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read sa token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s", resp.Status, string(body))
	}
	return resp, nil
}

func inClusterAPIBase() string {
	host := os.Getenv("KUBERNETES_SERVICE_HOST")
	port := os.Getenv("KUBERNETES_SERVICE_PORT")
	if host == "" || port == "" {
		return "https://kubernetes.default.svc"
	}
	return fmt.Sprintf("https://%s:%s", host, port)
}

// PodLogSource reads game log lines from the server pod's stdout, for
// servers started with the console log on stdout.
type PodLogSource struct {
	k8s      *K8sClient
	podLabel string
	logger   *slog.Logger
}

func NewPodLogSource(k8s *K8sClient, podLabel string, logger *slog.Logger) *PodLogSource {
	return &PodLogSource{k8s: k8s, podLabel: podLabel, logger: logger}
}

// Lines follows one pod. The stream ending (pod restart) is reported as an
// error like any other failure.
func (s *PodLogSource) Lines(ctx context.Context, fn func(string) error) error {
	podName, err := s.k8s.FindPod(ctx, s.podLabel)
	if err != nil {
		return fmt.Errorf("find pod: %w", err)
	}
	s.logger.Info("tailing pod logs", "namespace", s.k8s.namespace, "pod", podName)

	body, err := s.k8s.StreamLogs(ctx, podName)
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read pod log: %w", err)
	}
	return errLogStreamEnded
}
