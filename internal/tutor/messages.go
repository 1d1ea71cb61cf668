package tutor

import (
	"errors"
	"fmt"

	"github.com/abhisek/dsatutor/internal/attachment"
)

const (
	apologyMessage    = "Sorry, I'm having trouble reaching my language model right now, so I can't answer that yet. Please try again in a moment."
	nonEnglishMessage = "Sorry, I can only help in English. Please ask your Data Structures and Algorithms question in English and I'll be glad to help."
	offTopicMessage   = "I'm here to help with Data Structures and Algorithms, so I can't help with that one. Try asking about arrays, linked lists, sorting, trees, graphs or dynamic programming!"
)

func attachmentRefusal(err error, limit string) string {
	if errors.Is(err, attachment.ErrTooLarge) {
		return fmt.Sprintf("Sorry, that file is too large. Attachments can be at most %s each. Please upload a smaller image or PDF.", limit)
	}
	return fmt.Sprintf("Sorry, I can only read images and PDF files of up to %s each. Please upload your material in one of those formats.", limit)
}
