package vk

import (
	"fmt"

	"github.com/SevereCloud/vksdk/v2/api"
	longpoll "github.com/SevereCloud/vksdk/v2/longpoll-bot"
)

// Sender is the part of the VK API the bot writes through.
type Sender interface {
	MessagesSend(params api.Params) (int, error)
}

// Connect creates the API client and the community long poll for groupID.
func Connect(token string, groupID int) (*api.VK, *longpoll.LongPoll, error) {
	if token == "" || groupID == 0 {
		return nil, nil, fmt.Errorf("vk token and group id are required")
	}
	vkAPI := api.NewVK(token)
	lp, err := longpoll.NewLongPoll(vkAPI, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("vk longpoll: %w", err)
	}
	return vkAPI, lp, nil
}
