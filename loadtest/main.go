package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // Pairs of users messaging each other
	MsgCount  = 20 // Messages per user
)

type AuthResponse struct {
	Token string `json:"access_token"`
	User  struct {
		ID       string `json:"_id"`
		Username string `json:"username"`
	} `json:"user"`
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password-123"

	tokenA, idA := authenticate(userA, pass)
	tokenB, idB := authenticate(userB, pass)
	if tokenA == "" || tokenB == "" {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go holdConnection(&wsWg, tokenA, userA)
	go holdConnection(&wsWg, tokenB, userB)

	for i := 0; i < MsgCount; i++ {
		sendMessage(tokenA, idB, fmt.Sprintf("msg %d from %s", i, userA))
		sendMessage(tokenB, idA, fmt.Sprintf("msg %d from %s", i, userB))
		time.Sleep(10 * time.Millisecond)
	}

	wsWg.Wait()
}

// authenticate registers (ignoring conflicts) and logs in.
func authenticate(username, password string) (string, string) {
	email := username + "@loadtest.local"
	postJSON("/register", map[string]string{"username": username, "email": email, "password": password})

	resp, err := postJSON("/login", map[string]string{"email": email, "password": password})
	if err != nil {
		log.Printf("login failed [%s]: %v", username, err)
		return "", ""
	}
	defer resp.Body.Close()

	var data AuthResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token, data.User.ID
}

func sendMessage(token, receiverID, content string) {
	body, _ := json.Marshal(map[string]string{
		"receiverID": receiverID,
		"type":       "text",
		"content":    content,
	})
	req, _ := http.NewRequest("POST", BaseURL+"/api/messages", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("send failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Printf("send rejected: %d", resp.StatusCode)
	}
}

// holdConnection keeps a websocket open and drains presence pushes so the
// server sees both participants online for the duration of the run.
func holdConnection(wg *sync.WaitGroup, token, user string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Duration(MsgCount) * 50 * time.Millisecond)
	conn.SetReadDeadline(deadline)
	received := 0
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		received++
	}
	log.Printf("%s received %d pushes", user, received)
}

func postJSON(endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
